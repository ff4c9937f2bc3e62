package hotkey

import "golang.design/x/hotkey"

var modifiers = map[string]hotkey.Modifier{
	TokenCtrl:  hotkey.ModCtrl,
	TokenShift: hotkey.ModShift,
	TokenAlt:   hotkey.ModOption,
	TokenSuper: hotkey.ModCmd,
}
