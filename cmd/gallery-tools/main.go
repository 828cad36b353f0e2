package main

import (
	"gallery-tools/cmd/gallery-tools/cmd"
)

func main() {
	cmd.Execute()
}
