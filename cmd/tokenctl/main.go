package main

import (
	"os"

	"github.com/dmitrijs2005/gophauth/internal/tokenctl"
)

func main() {
	os.Exit(tokenctl.Run(os.Args[1:], os.Stdout, os.Stderr))
}
