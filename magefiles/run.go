//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed with the example configuration.
func (Run) Testbed() error {
	mg.Deps(Build.Testbed)
	fmt.Println("Run testbed...")
	if _, err := executeCmd("bin/texstream", withArgs("-config", "texstream.toml"), withStream()); err != nil {
		return err
	}
	return nil
}
