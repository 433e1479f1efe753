package injection

import "github.com/lcalzada-xor/eapsul/internal/core/ports"

// PacketInjector defines the interface for injecting packets
type PacketInjector = ports.FrameInjector
