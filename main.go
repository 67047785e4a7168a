package main

import "github.com/abhi5171-max/chemical-equipment-visualizer/cmd"

func main() {
	cmd.Execute()
}
