package utils

// bump the version segment when the cached payload shape changes
const EventsListCacheKey = "events:list:v1"
