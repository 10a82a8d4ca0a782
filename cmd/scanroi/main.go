package main

import "github.com/MeKo-Tech/scanroi/cmd/scanroi/cmd"

func main() {
	cmd.Execute()
}
