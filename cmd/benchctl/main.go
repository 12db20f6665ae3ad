// Command benchctl is the offline companion to the benchlink server: it
// inspects and checks valve model tables, resolves connection requests
// without touching hardware, issues API tokens and maintains the position
// history database.
package main

func main() {
	Execute()
}
