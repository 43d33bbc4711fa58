package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
)

// binding is a parsed hotkey: every listed key (identified by its possible
// rawcodes) must be down at once.
type binding struct {
	keys []bindingKey
}

type bindingKey struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Parse validates a hotkey string such as "Ctrl+Alt+T".
func Parse(combo string) ([]string, error) {
	parts := strings.Split(strings.ToLower(combo), "+")
	var keys []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		switch part {
		case "win", "cmd", "super":
			part = "cmd"
		}
		if len(rawcodesFor(part)) == 0 {
			return nil, fmt.Errorf("unknown key %q in hotkey %q", part, combo)
		}
		keys = append(keys, part)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("empty hotkey %q", combo)
	}
	return keys, nil
}

// Listen registers a global hotkey and invokes callback on every full-chord
// press. The callback must return quickly; the event loop posts into a
// buffered channel from it.
func Listen(combo string, callback func()) error {
	keys, err := Parse(combo)
	if err != nil {
		return err
	}

	b := &binding{}
	for _, name := range keys {
		b.keys = append(b.keys, bindingKey{name: name, rawcodes: rawcodesFor(name)})
	}
	log.Printf("hotkey: listening for %s", combo)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("hotkey: panic in listener goroutine: %v", r)
			}
		}()

		evChan := gohook.Start()
		if evChan == nil {
			log.Printf("hotkey: gohook.Start returned nil channel")
			return
		}

		var mu sync.Mutex
		for ev := range evChan {
			switch ev.Kind {
			case gohook.KeyDown:
				mu.Lock()
				if b.press(ev.Rawcode) && b.allPressed() {
					b.reset()
					mu.Unlock()
					callback()
					continue
				}
				mu.Unlock()
			case gohook.KeyUp:
				mu.Lock()
				b.release(ev.Rawcode)
				mu.Unlock()
			}
		}
		log.Printf("hotkey: event channel closed")
	}()
	return nil
}

func (b *binding) press(rawcode uint16) bool {
	matched := false
	for i := range b.keys {
		for _, rc := range b.keys[i].rawcodes {
			if rc == rawcode {
				b.keys[i].pressed = true
				matched = true
			}
		}
	}
	return matched
}

func (b *binding) release(rawcode uint16) {
	for i := range b.keys {
		for _, rc := range b.keys[i].rawcodes {
			if rc == rawcode {
				b.keys[i].pressed = false
			}
		}
	}
}

func (b *binding) allPressed() bool {
	for i := range b.keys {
		if !b.keys[i].pressed {
			return false
		}
	}
	return true
}

func (b *binding) reset() {
	for i := range b.keys {
		b.keys[i].pressed = false
	}
}

// rawcodeTable maps key names to Windows virtual-key rawcodes as delivered
// by the low-level keyboard hook. Modifiers list both left and right codes.
var rawcodeTable = map[string][]uint16{
	"ctrl":  {162, 163},
	"alt":   {164, 165},
	"shift": {160, 161},
	"cmd":   {91, 92},

	"space": {32}, "enter": {13}, "return": {13}, "esc": {27}, "escape": {27},
	"tab": {9}, "backspace": {8}, "delete": {46}, "del": {46},
	"insert": {45}, "ins": {45}, "home": {36}, "end": {35},
	"pageup": {33}, "pgup": {33}, "pagedown": {34}, "pgdn": {34},
	"left": {37}, "up": {38}, "right": {39}, "down": {40},
}

func rawcodesFor(name string) []uint16 {
	name = strings.ToLower(strings.TrimSpace(name))
	if codes, ok := rawcodeTable[name]; ok {
		return codes
	}
	if len(name) == 1 {
		c := name[0]
		switch {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c - 'a' + 0x41)}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c - '0' + 0x30)}
		}
	}
	// Function keys F1..F24 map to VK 0x70..0x87.
	if strings.HasPrefix(name, "f") && len(name) <= 3 {
		n := 0
		for _, r := range name[1:] {
			if r < '0' || r > '9' {
				return nil
			}
			n = n*10 + int(r-'0')
		}
		if n >= 1 && n <= 24 {
			return []uint16{uint16(0x70 + n - 1)}
		}
	}
	return nil
}
