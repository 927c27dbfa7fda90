package mercator

const mercatorMapGLSL = `
#define M_PI 3.1415926535897932384626433832795
const float R = 6378137.0;

vec4 mercator_map(vec4 pos) {
    // x is longitude, y is latitude, z and w pass through
    pos.x = R * radians(pos.x);
    pos.y = R * log(tan(M_PI / 4.0 + radians(pos.y) / 2.0));
    return pos;
}
`

const mercatorImapGLSL = `
#define M_PI 3.1415926535897932384626433832795
const float R = 6378137.0;

vec4 mercator_imap(vec4 pos) {
    pos.x = degrees(pos.x / R);
    pos.y = degrees(2.0 * atan(exp(pos.y / R)) - M_PI / 2.0);
    return pos;
}
`

const relativeMapGLSL = `
#define M_PI 3.1415926535897932384626433832795
const float R = 6378137.0;
uniform float u_lon;
uniform float u_lat;

vec4 relative_mercator_map(vec4 pos) {
    // pos.xy are meters east and north of (u_lon, u_lat)
    float lat = u_lat + degrees(pos.y / R);
    float lon = u_lon + degrees(pos.x / (R * cos(radians(u_lat))));
    pos.x = R * radians(lon);
    pos.y = R * log(tan(M_PI / 4.0 + radians(lat) / 2.0));
    return pos;
}
`

// No inverse exists, positions are returned unchanged.
const relativeImapGLSL = `
vec4 relative_mercator_imap(vec4 pos) {
    return pos;
}
`

const stMapGLSL = `
uniform float u_scale_x, u_scale_y, u_scale_z;
uniform float u_translate_x, u_translate_y, u_translate_z;

vec4 st_map(vec4 pos) {
    pos.xyz = pos.xyz * vec3(u_scale_x, u_scale_y, u_scale_z)
            + vec3(u_translate_x, u_translate_y, u_translate_z);
    return pos;
}
`

const stImapGLSL = `
uniform float u_scale_x, u_scale_y, u_scale_z;
uniform float u_translate_x, u_translate_y, u_translate_z;

vec4 st_imap(vec4 pos) {
    pos.xyz = (pos.xyz - vec3(u_translate_x, u_translate_y, u_translate_z))
            / vec3(u_scale_x, u_scale_y, u_scale_z);
    return pos;
}
`
