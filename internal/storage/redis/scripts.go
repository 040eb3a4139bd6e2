package redis

const (
	// addSecondsScript atomically adds seconds to one domain of the usage hash
	addSecondsScript = `
local usage_key = KEYS[1]     -- tabtime:usage
local meta_key = KEYS[2]      -- tabtime:usage:meta

local domain = ARGV[1]
local seconds = tonumber(ARGV[2])
local updated_at = ARGV[3]

if seconds == nil or seconds <= 0 then
  return redis.call('HGET', usage_key, domain)
end

-- HINCRBY creates the field at zero when it is absent
local total = redis.call('HINCRBY', usage_key, domain, seconds)
redis.call('HSET', meta_key, 'updated_at', updated_at)

return total
`

	// replaceUsageScript atomically swaps the whole usage hash
	replaceUsageScript = `
local usage_key = KEYS[1]     -- tabtime:usage
local meta_key = KEYS[2]      -- tabtime:usage:meta

local updated_at = ARGV[1]

redis.call('DEL', usage_key)
for i = 2, #ARGV, 2 do
  redis.call('HSET', usage_key, ARGV[i], ARGV[i + 1])
end
redis.call('HSET', meta_key, 'updated_at', updated_at)

return redis.call('HLEN', usage_key)
`
)
