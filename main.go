package main

import "github.com/fbscope/fbscope/cmd"

func main() {
	cmd.Execute()
}
