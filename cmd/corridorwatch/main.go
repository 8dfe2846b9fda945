// corridorwatch: non-actuating governance kernel for ecological corridors.
package main

import "github.com/ppiankov/corridorwatch/internal/cli"

func main() {
	cli.Execute()
}
