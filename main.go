package main

import "github.com/hurou927/pgmonolayer/cmd"

func main() {
	cmd.Execute()
}
