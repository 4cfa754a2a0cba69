// Package goods defines what moves through the halt network: goods
// categories (the partition key of every routing table), goods types and
// the three enablement classes a station can accept.
package goods
