package main

import "carscan-server/internal/cli"

func main() {
	cli.Execute()
}
