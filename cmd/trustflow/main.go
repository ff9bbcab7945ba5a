package main

import (
	"github.com/trustflow-labs/trustflow/cmd/trustflow/cmd"
)

func main() {
	cmd.Execute()
}
