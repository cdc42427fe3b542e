package main

import (
	"pulptool/internal/cli"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	cli.Execute(version, commit, date)
}
