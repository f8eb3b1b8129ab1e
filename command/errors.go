package command

import (
	"errors"
	"fmt"
	"strings"

	"chatoverlay/client"

	"github.com/spf13/cobra"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	if isConnectionError(err) {
		fmt.Fprintln(cmd.ErrOrStderr(), "Hint: is the server running? Try: chatoverlay serve")
	}

	return err
}

func isConnectionError(err error) bool {
	var apiErr *client.APIError
	if err == nil || errors.As(err, &apiErr) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no such host")
}
