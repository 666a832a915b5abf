// Command rosterctl runs student imports and manages colleges from the shell.
package main

func main() {
	Execute()
}
