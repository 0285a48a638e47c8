package main

import "github.com/Beastly713/parsefuzz/cmd"

func main() {
	cmd.Execute()
}
