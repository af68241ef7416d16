package eventbus

import "reflect"

// funcPointer returns the entry point address of a Handler so Off can
// compare function values for identity, matching the Python bus's use of
// plain callable equality for on()/off().
func funcPointer(h Handler) uintptr {
	if h == nil {
		return 0
	}
	return reflect.ValueOf(h).Pointer()
}
