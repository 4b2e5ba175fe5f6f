package lock

import (
	"bufio"
	"fmt"
	"io"
)

// ExportRequirements writes pkgs in requirements.txt format with one
// --hash option per file, suitable for pip's hash-checking mode.
func ExportRequirements(w io.Writer, pkgs []Package, withHashes bool) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# This file is @generated by pylock.")
	for _, p := range pkgs {
		line := p.Name + "==" + p.Version.String()
		if p.Marker != "" {
			line += " ; " + p.Marker
		}
		hashes := p.Hashes()
		if !withHashes || len(hashes) == 0 {
			fmt.Fprintln(bw, line)
			continue
		}
		fmt.Fprintln(bw, line+" \\")
		for i, h := range hashes {
			sep := " \\"
			if i == len(hashes)-1 {
				sep = ""
			}
			fmt.Fprintf(bw, "    --hash=%s%s\n", h, sep)
		}
	}
	return bw.Flush()
}
