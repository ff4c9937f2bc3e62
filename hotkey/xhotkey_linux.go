package hotkey

import "golang.design/x/hotkey"

// Mod1 is Alt and Mod4 is Super on common X keymaps.
var modifiers = map[string]hotkey.Modifier{
	TokenCtrl:  hotkey.ModCtrl,
	TokenShift: hotkey.ModShift,
	TokenAlt:   hotkey.Mod1,
	TokenSuper: hotkey.Mod4,
}
