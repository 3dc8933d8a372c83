package verify

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"gatekeeper/bot/common"
)

const commandName = "verify"

var errUnterminatedQuote = errors.New("unterminated quote")

// isPrefixCommand reports whether content invokes <prefix>verify
func isPrefixCommand(content, prefix string) bool {
	rest, ok := strings.CutPrefix(content, prefix+commandName)
	if !ok {
		return false
	}
	return rest == "" || unicode.IsSpace(rune(rest[0]))
}

// splitArgs splits a command line on whitespace. Double quotes group words and
// may be empty; a backslash escapes the next character inside quotes.
func splitArgs(s string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		escaped bool
		started bool
	)

	for _, r := range s {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case inQuote && r == '\\':
			escaped = true
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && unicode.IsSpace(r):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}

	if inQuote || escaped {
		return nil, errUnterminatedQuote
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}

// parsePrefixRequest turns "<prefix>verify <sub> <args>" into a Request.
// Text arguments spanning several words are joined with single spaces.
func parsePrefixRequest(content, prefix string) (Request, error) {
	line := strings.TrimPrefix(content, prefix+commandName)
	args, err := splitArgs(line)
	if err != nil {
		return Request{}, common.NewUserError("Your command has an unterminated quote.", err.Error())
	}
	if len(args) == 0 {
		return Request{}, common.NewUserError(usage(), "verify called without a subcommand")
	}

	req := Request{Subcommand: strings.ToLower(args[0])}
	values := args[1:]

	switch req.Subcommand {
	case SubMessage, SubWrongMsg:
		if len(values) == 0 {
			return Request{}, missingArgument(req.Subcommand, `"<message>"`)
		}
		req.Text = strings.Join(values, " ")

	case SubRole:
		if len(values) == 0 {
			return Request{}, missingArgument(req.Subcommand, "<role>")
		}
		id, ok := common.ParseRoleReference(values[0])
		if !ok {
			return Request{}, common.NewUserError(fmt.Sprintf("Role %q not found.", values[0]), "unparseable role reference")
		}
		req.RoleID = id

	case SubChannel:
		if len(values) == 0 {
			return Request{}, missingArgument(req.Subcommand, "<channel>")
		}
		id, ok := common.ParseChannelReference(values[0])
		if !ok {
			return Request{}, common.NewUserError(fmt.Sprintf("Channel %q not found.", values[0]), "unparseable channel reference")
		}
		req.ChannelID = id

	case SubMinTime:
		if len(values) == 0 {
			return Request{}, missingArgument(req.Subcommand, "<seconds>")
		}
		seconds, err := strconv.ParseInt(values[0], 10, 64)
		if err != nil {
			return Request{}, common.NewUserError(fmt.Sprintf("`%s` is not a whole number of seconds.", common.StripBackticks(values[0])), "unparseable mintime")
		}
		req.Seconds = seconds

	case SubStatus:
	default:
		return Request{}, common.NewUserError(usage(), fmt.Sprintf("unknown verify subcommand %q", req.Subcommand))
	}

	return req, nil
}

func missingArgument(subcommand, placeholder string) error {
	return common.NewUserError(
		fmt.Sprintf("Missing argument. Usage: verify %s %s", subcommand, placeholder),
		"missing verify argument",
	)
}
