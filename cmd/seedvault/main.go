package main

import "github.com/jmcleod/seedvault/cmd/seedvault/cmd"

func main() {
	cmd.Execute()
}
