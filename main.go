package main

import "github.com/deploymenttheory/go-fif/cmd"

func main() {
	cmd.Execute()
}
