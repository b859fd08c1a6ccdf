// sentinel checks proposed actions against ethical constraints and
// produces human-reviewed risk assessments.
package main

import "github.com/ppiankov/sentinel/internal/cli"

func main() {
	cli.Execute()
}
