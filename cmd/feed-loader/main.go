package main

import "hashfeed/internal/cli"

func main() {
	cli.Execute()
}
