package models

import "strings"

// CommandType enumerates the station-manager commands accepted over WhatsApp.
type CommandType string

const (
	CommandEntry   CommandType = "entry"
	CommandPrice   CommandType = "price"
	CommandStock   CommandType = "stock"
	CommandHelp    CommandType = "help"
	CommandUnknown CommandType = "unknown"
)

// Command represents a parsed instruction extracted from WhatsApp text.
type Command struct {
	Type CommandType
	Raw  string
	Args []string
}

// ParseCommand derives a Command instance from free-form text messages.
// Arguments keep their original case so notes are stored as typed.
func ParseCommand(message string) Command {
	trimmed := strings.TrimSpace(message)
	cmd := Command{Raw: message, Type: CommandUnknown}

	tokens := strings.Fields(trimmed)
	if len(tokens) == 0 {
		return cmd
	}

	head := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	switch head {
	case string(CommandEntry), "in":
		cmd.Type = CommandEntry
	case string(CommandPrice):
		cmd.Type = CommandPrice
	case string(CommandStock), "balance":
		cmd.Type = CommandStock
	case string(CommandHelp), "?":
		cmd.Type = CommandHelp
	}

	if len(tokens) > 1 {
		cmd.Args = tokens[1:]
	}

	return cmd
}
