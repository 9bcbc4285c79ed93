package main

import "github.com/minifiglab/figscope/cmd"

func main() {
	cmd.Execute()
}
