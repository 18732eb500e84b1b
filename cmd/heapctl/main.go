// Command heapctl replays allocation scripts against the free-list heap and
// inspects heap images.
package main

func main() {
	execute()
}
