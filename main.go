package main

import "github.com/yono39/cytui/cmd"

func main() {
	cmd.Execute()
}
