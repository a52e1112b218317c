package main

import "github.com/ARMmbed/mbedtools/cmd"

func main() {
	cmd.Execute()
}
