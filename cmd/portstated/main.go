package main

import "github.com/nodeflow/portstate/cmd/portstated/cmd"

func main() {
	cmd.Execute()
}
