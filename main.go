/*
Copyright © 2025 Henry Till <henrytill@gmail.com>
*/
package main

import "github.com/henrytill/hbt/cmd"

func main() {
	cmd.Execute()
}
