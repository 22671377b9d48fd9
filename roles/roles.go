/*
Static per-role data: which lab files go where, which packages get
installed, and what the role does at boot.
*/
package roles

import (
	"fmt"

	"github.com/polydawn/labimg"
)

// A lab source file and where it lands in the rootfs.
type FilePair struct {
	Src string // Relative to the assets dir.
	Dst string // Relative to the rootfs root.
}

type Spec struct {
	Role        labimg.Role
	Files       []FilePair
	Packages    []string
	StartupBody string // Shell fragment appended to the boot script.
}

var CommonPackages = []string{"bash", "coreutils", "nano", "iproute2", "procps-ng"}

var specs = [labimg.NumRoles]Spec{
	labimg.Attacker: {
		Role: labimg.Attacker,
		Files: []FilePair{
			{"network-lab-final/attacker/attack_script.py", "opt/lab/attacker/attack_script.py"},
			{"network-lab-final/attacker/payloads.txt", "opt/lab/attacker/payloads.txt"},
		},
		Packages: withCommon("python3", "py3-pip", "hping3", "iputils"),
		StartupBody: `if [ -f /opt/lab/attacker/attack_script.py ]; then
    echo "[lab] Launching attack loop" >/dev/console
    python3 /opt/lab/attacker/attack_script.py >/var/log/attacker.log 2>&1 &
fi
`,
	},
	labimg.Defender: {
		Role: labimg.Defender,
		Files: []FilePair{
			{"network-lab-final/snort/flag_checker.py", "opt/lab/snort/flag_checker.py"},
			{"network-lab-final/snort/found", "opt/lab/snort/found"},
			{"network-lab-final/snort/motd", "opt/lab/snort/motd"},
		},
		Packages: withCommon("python3", "snort", "tcpdump", "iputils"),
		StartupBody: `if [ -f /opt/lab/snort/motd ]; then
    cat /opt/lab/snort/motd >/dev/console
fi
echo "[lab] Snort shell ready. Type 'found' to submit flag." >/dev/console
`,
	},
}

func withCommon(pkgs ...string) []string {
	return append(append([]string{}, CommonPackages...), pkgs...)
}

// The static data for a role.  Panics for roles outside the enum.
func For(role labimg.Role) Spec {
	if int(role) >= labimg.NumRoles {
		panic(fmt.Errorf("no such role %d", role))
	}
	return specs[role]
}
