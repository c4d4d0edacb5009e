package main

import "github.com/hashbeam/librarian/cmd/librarian/cmd"

func main() {
	cmd.Execute()
}
