package config

type StorageKeyStruct struct{}

func NewStorageKeyStruct() *StorageKeyStruct {
	return &StorageKeyStruct{}
}

// ActiveSession returns the single persisted slot holding at most one
// resumable exam session.
func (k *StorageKeyStruct) ActiveSession() string {
	return "exam:active_session"
}

// History returns the key for the ordered exam history list, newest first.
func (k *StorageKeyStruct) History() string {
	return "exam:history"
}

// Preferences returns the key holding UI preference hints (language, theme).
// The engine reads it at startup only; it never writes it.
func (k *StorageKeyStruct) Preferences() string {
	return "exam:preferences"
}

var StorageKey = NewStorageKeyStruct()
