package main

import (
	"github.com/nettrace-go/nettrace/cmd"
)

func main() {
	cmd.Execute()
}
