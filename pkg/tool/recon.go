package tool

import (
	"context"
	"fmt"
	"strings"
)

const defaultWordlist = "/usr/share/wordlists/dirb/common.txt"

// RegisterReconTools registers wrappers over the common reconnaissance
// scanners. Each builds an argv for the underlying binary and runs it to
// completion; the agent is expected to pick timeouts via its run config.
func RegisterReconTools(r *Registry, workDir string) error {
	tools := []Definition{
		{
			Name:        "nmap_scan",
			Description: "Run an nmap scan against a target host or network.",
			Parameters: []Parameter{
				{Name: "target", Type: "string", Description: "Host, IP or CIDR range", Required: true},
				{Name: "ports", Type: "string", Description: "Port spec, e.g. 1-1024 or 22,80,443"},
				{Name: "options", Type: "array", Description: "Extra nmap flags, e.g. [\"-sV\", \"-Pn\"]"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				target, _ := params["target"].(string)
				if target == "" {
					return nil, fmt.Errorf("target is required")
				}

				args := []string{}
				if ports, _ := params["ports"].(string); ports != "" {
					args = append(args, "-p", ports)
				}
				args = append(args, stringSlice(params["options"])...)
				args = append(args, target)

				return runArgv(ctx, "nmap", args, workDir)
			},
		},
		{
			Name:        "gobuster_dir_scan",
			Description: "Brute force directories and files on a web server with gobuster.",
			Parameters: []Parameter{
				{Name: "url", Type: "string", Description: "Target URL, e.g. http://example.com", Required: true},
				{Name: "wordlist", Type: "string", Description: "Wordlist path", Default: defaultWordlist},
				{Name: "options", Type: "array", Description: "Extra gobuster flags"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				url, _ := params["url"].(string)
				if url == "" {
					return nil, fmt.Errorf("url is required")
				}

				args := []string{"dir", "-u", url, "-w", wordlistParam(params), "-q"}
				args = append(args, stringSlice(params["options"])...)

				return runArgv(ctx, "gobuster", args, workDir)
			},
		},
		{
			Name:        "gobuster_dns_scan",
			Description: "Enumerate subdomains with gobuster in DNS mode.",
			Parameters: []Parameter{
				{Name: "domain", Type: "string", Description: "Target domain", Required: true},
				{Name: "wordlist", Type: "string", Description: "Wordlist path", Default: defaultWordlist},
				{Name: "options", Type: "array", Description: "Extra gobuster flags"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				domain, _ := params["domain"].(string)
				if domain == "" {
					return nil, fmt.Errorf("domain is required")
				}

				args := []string{"dns", "-d", domain, "-w", wordlistParam(params), "-q"}
				args = append(args, stringSlice(params["options"])...)

				return runArgv(ctx, "gobuster", args, workDir)
			},
		},
		{
			Name:        "dnsrecon_scan",
			Description: "Run dnsrecon against a domain. Scan types: std, brt, axfr.",
			Parameters: []Parameter{
				{Name: "domain", Type: "string", Description: "Target domain", Required: true},
				{Name: "scan_type", Type: "string", Description: "std, brt or axfr", Default: "std"},
			},
			Handler: func(ctx context.Context, params map[string]interface{}) (interface{}, error) {
				domain, _ := params["domain"].(string)
				if domain == "" {
					return nil, fmt.Errorf("domain is required")
				}
				scanType, _ := params["scan_type"].(string)
				if scanType == "" {
					scanType = "std"
				}
				switch scanType {
				case "std", "brt", "axfr":
				default:
					return nil, fmt.Errorf("unsupported scan type: %s", scanType)
				}

				args := []string{"-d", domain, "-t", scanType}
				return runArgv(ctx, "dnsrecon", args, workDir)
			},
		},
	}

	for _, def := range tools {
		if err := r.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", def.Name, err)
		}
	}
	return nil
}

func wordlistParam(params map[string]interface{}) string {
	if wl, _ := params["wordlist"].(string); strings.TrimSpace(wl) != "" {
		return wl
	}
	return defaultWordlist
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
