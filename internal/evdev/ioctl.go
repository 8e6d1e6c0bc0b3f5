package evdev

// ioctl request encoding from asm-generic/ioctl.h.
const (
	iocRead      = 2
	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uintptr {
	return dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift
}

func eviocgname(size int) uintptr {
	return ioc(iocRead, 'E', 0x06, uintptr(size))
}

func eviocgbit(ev, size int) uintptr {
	return ioc(iocRead, 'E', uintptr(0x20+ev), uintptr(size))
}

func eviocgabs(abs int) uintptr {
	return ioc(iocRead, 'E', uintptr(0x40+abs), 24)
}
