// Package agents ships the built-in agent catalog. Each entry is a
// ready-to-register definition over the built-in tool surface; callers
// override the model per deployment.
package agents

import (
	"github.com/strixops/strix/pkg/agent"
)

const redTeamerPrompt = `You are an autonomous red team operator working inside an authorized
engagement. You plan and execute offensive security assessments end to end:
reconnaissance, enumeration, exploitation and post-exploitation.

Work iteratively. Run one command, read its output, then decide the next
step. Prefer generic_linux_command for everything the host offers; use the
dedicated scan tools when they fit. Long-lived processes such as reverse
shell listeners run as sessions: start them, poll their output and feed
them input instead of blocking on them.

Stay inside the engagement scope at all times. Report findings factually,
with the exact commands and output that support them.`

const bugBounterPrompt = `You are a bug bounty hunter assessing targets that are in scope of a
published program. You hunt for concrete, reportable vulnerabilities:
injection, broken access control, SSRF, exposed services and credentials.

Favor breadth first: map the attack surface with the recon tools, then go
deep on the most promising findings. Use think to lay out a hypothesis
before committing to a long exploitation path. Every finding you report
must include reproduction steps.

Never test assets outside the program scope.`

// RedTeamer returns the offensive assessment agent. It carries the full
// shell, session and recon tool surface.
func RedTeamer(model string) agent.Definition {
	return agent.Definition{
		Name:         "red_teamer",
		Instructions: redTeamerPrompt,
		Model:        model,
		Tools: []string{
			"generic_linux_command",
			"ssh_command",
			"execute_code",
			"session_start",
			"session_list",
			"session_output",
			"session_input",
			"session_kill",
			"nmap_scan",
			"gobuster_dir_scan",
			"gobuster_dns_scan",
			"dnsrecon_scan",
		},
	}
}

// BugBounter returns the bug bounty agent. Compared to the red teamer it
// trades the session surface for the reasoning tool; scans it shares.
func BugBounter(model string) agent.Definition {
	return agent.Definition{
		Name:         "bug_bounter",
		Instructions: bugBounterPrompt,
		Model:        model,
		Tools: []string{
			"generic_linux_command",
			"execute_code",
			"think",
			"nmap_scan",
			"gobuster_dir_scan",
			"gobuster_dns_scan",
			"dnsrecon_scan",
		},
	}
}

// Catalog returns all built-in definitions on the given model, in a
// stable order suitable for coordinator registration.
func Catalog(model string) []agent.Definition {
	return []agent.Definition{
		RedTeamer(model),
		BugBounter(model),
	}
}
