//go:build !unix

package runner

import "os/exec"

// configureProcessGroup keeps exec's default cancel behaviour (kill the
// direct child) on platforms without POSIX process groups.
func configureProcessGroup(c *exec.Cmd) {}
