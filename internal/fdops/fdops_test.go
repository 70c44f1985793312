package fdops_test

import (
	"testing"

	"keelos/internal/defs"
	"keelos/internal/fdops"
)

func TestNetUnsupportedReturnsENOTSOCK(t *testing.T) {
	var n fdops.NetUnsupported

	if _, _, err := n.Accept(nil); err != -defs.ENOTSOCK {
		t.Fatalf("Accept: errno %d, want -ENOTSOCK", err)
	}
	if err := n.Bind(nil); err != -defs.ENOTSOCK {
		t.Fatalf("Bind: errno %d, want -ENOTSOCK", err)
	}
	if err := n.Connect(nil); err != -defs.ENOTSOCK {
		t.Fatalf("Connect: errno %d, want -ENOTSOCK", err)
	}
	if _, err := n.Listen(0); err != -defs.ENOTSOCK {
		t.Fatalf("Listen: errno %d, want -ENOTSOCK", err)
	}
	if _, err := n.Sendmsg(nil, nil, nil, 0); err != -defs.ENOTSOCK {
		t.Fatalf("Sendmsg: errno %d, want -ENOTSOCK", err)
	}
	if _, _, _, err := n.Recvmsg(nil, nil, nil, 0); err != -defs.ENOTSOCK {
		t.Fatalf("Recvmsg: errno %d, want -ENOTSOCK", err)
	}
	if _, err := n.Getsockopt(0); err != -defs.ENOTSOCK {
		t.Fatalf("Getsockopt: errno %d, want -ENOTSOCK", err)
	}
	if err := n.Setsockopt(0, 0); err != -defs.ENOTSOCK {
		t.Fatalf("Setsockopt: errno %d, want -ENOTSOCK", err)
	}
	if err := n.Shutdown(true, true); err != -defs.ENOTSOCK {
		t.Fatalf("Shutdown: errno %d, want -ENOTSOCK", err)
	}
}
