// Command tendril builds an index of a directory of markdown documents and keeps it up to date.
package main

func main() {
	Execute()
}
