package main

import "github.com/qobs-build/forge/cmd"

func main() {
	cmd.Execute()
}
