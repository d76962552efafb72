package provider

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Well-known manifest provider GUIDs.
var (
	KernelProcessGUID      = uuid.MustParse("22fb2cd6-0e7b-422b-a0c7-2fad1fd0e716") // Microsoft-Windows-Kernel-Process
	KernelFileGUID         = uuid.MustParse("edd08927-9cc4-4e65-b970-c2560fb5c289") // Microsoft-Windows-Kernel-File
	KernelNetworkGUID      = uuid.MustParse("7dd42a49-5329-4832-8dfd-43d979153a88") // Microsoft-Windows-Kernel-Network
	KernelRegistryGUID     = uuid.MustParse("70eb4f03-c1de-4f73-a051-33d13d5413bd") // Microsoft-Windows-Kernel-Registry
	KernelDiskGUID         = uuid.MustParse("c7bde69a-e1e0-4177-b6ef-283ad1525271") // Microsoft-Windows-Kernel-Disk
	KernelEventTracingGUID = uuid.MustParse("b675ec37-bdb6-4648-bc92-f3fdc74d3ca2") // Microsoft-Windows-Kernel-EventTracing
	DNSClientGUID          = uuid.MustParse("1c95126e-7eea-49a9-a3fe-a378b03ddb4d") // Microsoft-Windows-DNS-Client
	TCPIPGUID              = uuid.MustParse("2f07e2ee-15db-40f1-90ef-9d7ba282188a") // Microsoft-Windows-TCPIP
	NDISGUID               = uuid.MustParse("cdead503-17f5-4a3e-b7ae-df8cc2902eb9") // Microsoft-Windows-NDIS
	SecurityAuditingGUID   = uuid.MustParse("54849625-5478-4994-a5ba-3e3b0328c30d") // Microsoft-Windows-Security-Auditing
	PowerShellGUID         = uuid.MustParse("a0c1853b-5c40-4b15-8766-3cf1c58f985a") // Microsoft-Windows-PowerShell
)

// Known maps provider names to GUIDs.
var Known = map[string]uuid.UUID{
	"Microsoft-Windows-Kernel-Process":      KernelProcessGUID,
	"Microsoft-Windows-Kernel-File":         KernelFileGUID,
	"Microsoft-Windows-Kernel-Network":      KernelNetworkGUID,
	"Microsoft-Windows-Kernel-Registry":     KernelRegistryGUID,
	"Microsoft-Windows-Kernel-Disk":         KernelDiskGUID,
	"Microsoft-Windows-Kernel-EventTracing": KernelEventTracingGUID,
	"Microsoft-Windows-DNS-Client":          DNSClientGUID,
	"Microsoft-Windows-TCPIP":               TCPIPGUID,
	"Microsoft-Windows-NDIS":                NDISGUID,
	"Microsoft-Windows-Security-Auditing":   SecurityAuditingGUID,
	"Microsoft-Windows-PowerShell":          PowerShellGUID,
}

// Lookup resolves a known provider name (case-insensitive) or a GUID
// string. Known providers come back with their name set.
func Lookup(nameOrGUID string) (Provider, error) {
	for name, g := range Known {
		if strings.EqualFold(name, nameOrGUID) {
			p := NewFromGUID(g)
			p.Name = name
			return p, nil
		}
	}
	p, err := New(nameOrGUID)
	if err != nil {
		return Provider{}, err
	}
	p.Name = NameOf(p.GUID)
	return p, nil
}

// NameOf returns the known name of guid, or "".
func NameOf(guid uuid.UUID) string {
	for name, g := range Known {
		if g == guid {
			return name
		}
	}
	return ""
}

// KnownNames lists the known provider names in order.
func KnownNames() []string {
	names := make([]string, 0, len(Known))
	for name := range Known {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
