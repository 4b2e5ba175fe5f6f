package cli

import (
	"context"
	"errors"

	pkgerrors "github.com/matzehuels/pylock/pkg/errors"
	"github.com/matzehuels/pylock/pkg/resolve"
)

// Execute runs the command line args and reports a failure on the error
// writer. The returned error is meant for [ExitCode].
//
// Example:
//
//	func main() {
//	    c := cli.New(os.Stderr, cli.LogInfo)
//	    os.Exit(cli.ExitCode(c.Execute(ctx, os.Args[1:])))
//	}
func (c *CLI) Execute(ctx context.Context, args []string) error {
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(c.Out)
	root.SetErr(c.errOut())

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	c.report(err)
	return err
}

// report prints err for a person. Conflicts get their own layout.
func (c *CLI) report(err error) {
	w := c.errOut()
	var conflict *resolve.ConflictError
	switch {
	case errors.Is(err, context.Canceled):
		printWarning(w, "Interrupted")
	case errors.As(err, &conflict):
		printConflict(w, conflict)
	default:
		printError(w, "%s", pkgerrors.UserMessage(err))
	}
}
