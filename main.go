package main

import "github.com/foresight-labs/lmsr-marketmaker/cmd"

func main() {
	cmd.Execute()
}
