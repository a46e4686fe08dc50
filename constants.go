package redis

import "time"

// Connection defaults
const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 6379

	// DefaultTimeout bounds each send attempt and each receive.
	DefaultTimeout = 2 * time.Second

	// DefaultMaxSize is the per-server connection limit.
	DefaultMaxSize = 10
)

// Command names
const (
	CmdPing      = "PING"
	CmdAuth      = "AUTH"
	CmdSet       = "SET"
	CmdGet       = "GET"
	CmdGetSet    = "GETSET"
	CmdMGet      = "MGET"
	CmdSetNX     = "SETNX"
	CmdIncr      = "INCR"
	CmdDecr      = "DECR"
	CmdIncrBy    = "INCRBY"
	CmdDecrBy    = "DECRBY"
	CmdExists    = "EXISTS"
	CmdDel       = "DEL"
	CmdType      = "TYPE"
	CmdKeys      = "KEYS"
	CmdRandomKey = "RANDOMKEY"
	CmdRename    = "RENAME"
	CmdRenameNX  = "RENAMENX"
	CmdDBSize    = "DBSIZE"
	CmdExpire    = "EXPIRE"
	CmdTTL       = "TTL"
	CmdLPush     = "LPUSH"
	CmdRPush     = "RPUSH"
	CmdLLen      = "LLEN"
	CmdLRange    = "LRANGE"
	CmdLIndex    = "LINDEX"
	CmdLSet      = "LSET"
	CmdLRem      = "LREM"
	CmdLPop      = "LPOP"
	CmdRPop      = "RPOP"
	CmdSelect    = "SELECT"
	CmdMove      = "MOVE"
	CmdFlushDB   = "FLUSHDB"
	CmdFlushAll  = "FLUSHALL"
	CmdSort      = "SORT"
	CmdSave      = "SAVE"
	CmdBgSave    = "BGSAVE"
	CmdLastSave  = "LASTSAVE"
	CmdShutdown  = "SHUTDOWN"
	CmdInfo      = "INFO"
	CmdSlaveOf   = "SLAVEOF"
	CmdMonitor   = "MONITOR"
)
