package main

import "petmatch/internal/cli"

func main() {
	cli.Execute()
}
