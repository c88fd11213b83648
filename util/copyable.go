package util

type Copyable[A any] interface {
	Copy() A
}

// DeepCopyable values can additionally produce a copy which shares no identities with the original
type DeepCopyable[A any] interface {
	Copyable[A]
	DeepCopy() A
}
