// Package services implements the driving ports: chat, documents,
// sessions, local models and configuration. Everything outside the
// process is reached through driven ports.
package services
