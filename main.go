package main

import "github.com/tanq16/urlget/cmd"

func main() {
	cmd.Execute()
}
