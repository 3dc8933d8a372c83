package common

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	roleMentionPattern    = regexp.MustCompile(`^<@&(\d+)>$`)
	channelMentionPattern = regexp.MustCompile(`^<#(\d+)>$`)
)

// ParseSnowflake converts a Discord ID string to int64
func ParseSnowflake(id string) (int64, error) {
	return strconv.ParseInt(id, 10, 64)
}

// FormatSnowflake converts an int64 Discord ID to string
func FormatSnowflake(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseRoleReference accepts a role mention (<@&id>) or a raw role ID
func ParseRoleReference(arg string) (int64, bool) {
	return parseReference(arg, roleMentionPattern)
}

// ParseChannelReference accepts a channel mention (<#id>) or a raw channel ID
func ParseChannelReference(arg string) (int64, bool) {
	return parseReference(arg, channelMentionPattern)
}

func parseReference(arg string, mention *regexp.Regexp) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if m := mention.FindStringSubmatch(arg); m != nil {
		arg = m[1]
	}
	id, err := ParseSnowflake(arg)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// StripBackticks removes every backtick so text can be wrapped in inline code
func StripBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}

// InlineCode wraps s in backticks after removing any it already contains
func InlineCode(s string) string {
	return "`" + StripBackticks(s) + "`"
}
