// Command sas7bdat reads the metadata and rows of SAS7BDAT files.
package main

import (
	"os"

	"github.com/defineEditor/sas7bdat/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
